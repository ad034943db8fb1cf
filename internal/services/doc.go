// Package services provides the shared error taxonomy and context annotation
// helpers used across executor, client and strategy layers.
//
// Errors are tagged with sentinel markers (ErrExtraction, ErrProcess, ...)
// via Wrap so callers can classify failures without inspecting message text.
// Classification drives two decisions: whether a library-mode failure may
// fall back to process mode, and which terminal queue state an item lands in.
package services
