// Package updater pulls new code from the git remote and restarts the
// process in place. Built for unattended devices: local changes are
// expendable, the remote always wins.
package updater
