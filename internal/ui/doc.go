// Package ui provides the terminal styling shared by ramwatch's commands,
// the alert banner and the watch dashboard.
//
// # Color Scheme
//
// Colors are hex values rendered through Lip Gloss, which downsamples them
// to whatever the terminal supports:
//
//	ColorSuccess   (neon green)    - RAM low, operations succeeded
//	ColorWarning   (amber)         - RAM elevated, warnings
//	ColorNeonOrange                - RAM high
//	ColorError     (hot red-pink)  - RAM critical, failures
//	ColorInfo      (cyan)          - Informational messages
//	ColorMuted     (purple-gray)   - Secondary text, timing info
//
// Use DisableColors() to switch to monochrome output (for --no-color flag).
//
// # RAM Levels
//
// LevelFor buckets a percentage into the four levels of the status icon:
// below 30% low, from 30% elevated, from 40% high, from 50% critical.
// RenderBar and RenderSparkline colour themselves by the level of the
// value they show:
//
//	ui.RenderBar(67.5, 20)              // [█████████████░░░░░░░]  68%
//	ui.RenderSparkline(history, 30)     // ▂▂▃▄▅▆▆▇
package ui
