// Package tui is the terminal front end: it renders supervisor events into a
// scrollback and turns typed lines into engine commands.
package tui
