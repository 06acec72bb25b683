// Package irc owns the IRC line grammar.
//
// Ownership boundary:
// - message parse/serialize (tags, source prefix, command, parameters)
// - IRCv3 tag value escaping
// - numeric reply names
//
// Parse is total: any line without CR/LF yields a Message, possibly one with
// Malformed set. Serialize(Parse(line)) reproduces canonical input byte for byte.
package irc
