// Package cli implements the ramwatch command-line interface.
//
// Each cobra command loads the config, builds an app.App and hands control
// to it; the commands themselves only deal with flags, output and signals.
//
//	ramwatch run          - Sample RAM and escalate until interrupted
//	ramwatch watch        - Same, behind a terminal dashboard
//	ramwatch init         - Write ramwatch.yaml
//	ramwatch config show  - Print the resolved config
//	ramwatch simulate     - Replay scripted samples through the policy
//	ramwatch doctor       - Check config, SMTP and responders before running
//	ramwatch version      - Print build information
package cli
