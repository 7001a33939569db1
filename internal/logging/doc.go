// Package logging builds the structured slog loggers used across tubealbum.
//
// Loggers are always passed explicitly; nothing in the module reads or sets
// slog's process-wide default. Two formats are supported: a compact console
// line ("ts LEVEL component: msg k=v") and JSON.
//
//	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", OutputPaths: []string{"stderr"}})
//	poolLog := logging.NewComponentLogger(logger, "pool")
//	poolLog.Info("item finished", logging.String(logging.FieldItemID, ref.ID))
package logging
