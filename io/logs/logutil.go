// Package logs creates a MultiWriter instance so that everything written to
// stdout is also persisted to a log file.
package logs

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/io/file"
)

func addLogWriter(w io.Writer) {
	mw := io.MultiWriter(logrus.StandardLogger().Out, w)
	logrus.SetOutput(mw)
}

// ConfigurePersistentLogging adds a log-to-file writer. File content is
// identical to stdout.
func ConfigurePersistentLogging(logFileName string) error {
	logrus.WithField("logFileName", logFileName).Info("Logs will be made persistent")
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, file.ReadWritePermissions) // #nosec G304
	if err != nil {
		return err
	}

	addLogWriter(f)

	logrus.Info("File logging initialized")
	return nil
}

// MaskCredentialsLogging masks the url credentials before logging.
// [scheme:][//[userinfo@]host][/]path[?query][#fragment] becomes
// [scheme:][//[***]host][/***][#***]. Non-URL strings are returned as is.
func MaskCredentialsLogging(currUrl string) string {
	maskedUrl := currUrl
	u, err := url.Parse(currUrl)
	if err != nil {
		return currUrl
	}
	if u.User != nil {
		maskedUrl = strings.Replace(maskedUrl, u.User.String(), "***", 1)
	}
	if u.IsAbs() && len(u.RequestURI()) > 1 {
		maskedUrl = strings.Replace(maskedUrl, u.RequestURI(), "/***", 1)
	}
	if len(u.Fragment) > 0 {
		maskedUrl = strings.Replace(maskedUrl, u.RawFragment, "***", 1)
	}
	return maskedUrl
}
