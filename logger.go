package mmkv

import "github.com/sirupsen/logrus"

// log is where this package reports failures, at Warn: failed mutations,
// failed check_load_data runs, stores that fail to open or sync, a failed
// crypt-key reset, and a log region discarded for malformed entries.
// Successful operations, structural or routine, do not log.
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package-wide logger. Passing nil restores the
// standard logrus logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		log = logrus.StandardLogger()
		return
	}
	log = l
}
