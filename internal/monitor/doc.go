// Package monitor implements the `ramwatch watch` terminal dashboard.
//
// The dashboard runs on Bubble Tea (Model-Update-View):
//
//   - Model: latest reading, RAM history, breach state, recent escalations
//   - Update: processes keystrokes, refresh ticks and escalation events
//   - View: renders the gauge, sparkline, process list and event log
//
// # Data Flow
//
// The model never touches the bus directly. Two inputs feed it:
//
//  1. tickMsg fires every refresh interval and reads the policy Status
//     snapshot; a new LatestAt pushes the reading into History.
//  2. Feed is an escalation subscriber that forwards RAM_HIGH, SEND_EMAIL,
//     RESTART and RAM_NORMAL into a buffered channel the model drains.
//
// # Levels
//
// The gauge is coloured like the status icon: green below 30%, yellow from
// 30%, orange from 40% and red from 50%.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	p           - Pause / resume updates
//	c           - Clear the event log
//	?           - Toggle help overlay
package monitor
