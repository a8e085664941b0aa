// Package compress resolves and runs the external stream compressor used for
// xpak payloads.
//
// A method name selects a command template from a fixed table. Templates are
// expanded with shell rules against the configuration variables, so entries
// such as ${PORTAGE_BZIP2_COMMAND:-bzip2} and per-method flag variables work
// the same way they would in make.conf. An empty method stores the payload
// through cat.
package compress
