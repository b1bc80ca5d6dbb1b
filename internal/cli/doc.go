// Package cli parses command-line arguments of the xodc binaries, validates
// user input and maps failures to process exit codes. It also assembles the
// compiler from the files named on the command line.
package cli
