// Package sentrylog forwards structured log records to Sentry.
//
// Each record's level name is mapped onto a Sentry severity. Records at
// error or fatal are captured as exceptions (using an error found in the
// record, or one built from its message); everything else is captured as a
// message. Tags, user context and the remaining fields travel with the
// capture as tags, user and extras.
//
// Quick start:
//
//	t, err := sentrylog.New(
//	    sentrylog.WithClientOptions(sentry.ClientOptions{Dsn: dsn}),
//	    sentrylog.WithLevels(map[string]sentrylog.Level{"warn": sentrylog.LevelInfo}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close(context.Background())
//
//	t.Log(sentrylog.Record{Level: "error", Fields: sentrylog.Fields{"message": "boom"}})
//
// Hooks for logrus and log/slog live in the logrushook and sloghandler
// subpackages.
package sentrylog
