package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; ProvidersChanged
// and ListenAddrChanged are reported so callers can warn that a restart is
// needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PracticeChanged is true when any practice setting other than the
	// capture device changed. New sessions pick up the new values.
	PracticeChanged bool
	NewPractice     PracticeConfig

	ProvidersChanged  bool
	ListenAddrChanged bool
}

// HotReloadable reports whether d contains changes that apply without a restart.
func (d ConfigDiff) HotReloadable() bool {
	return d.LogLevelChanged || d.PracticeChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.Addr() != new.Server.Addr() {
		d.ListenAddrChanged = true
	}

	op, np := old.Practice, new.Practice
	if op.CaptureDuration() != np.CaptureDuration() ||
		op.Rate() != np.Rate() ||
		op.FeedbackLanguage != np.FeedbackLanguage ||
		op.FeedbackTemperature != np.FeedbackTemperature ||
		op.FeedbackMaxTokens != np.FeedbackMaxTokens {
		d.PracticeChanged = true
		d.NewPractice = np
	}

	if !reflect.DeepEqual(old.Providers, new.Providers) || !reflect.DeepEqual(op.Capture, np.Capture) {
		d.ProvidersChanged = true
	}

	return d
}
