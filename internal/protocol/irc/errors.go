package irc

import "errors"

var (
	ErrEmptyCommand    = errors.New("irc: empty command")
	ErrInvalidCommand  = errors.New("irc: invalid command")
	ErrLineBreak       = errors.New("irc: line break in message")
	ErrInvalidParam    = errors.New("irc: invalid middle parameter")
	ErrTooManyParams   = errors.New("irc: too many parameters")
	ErrLineTooLong     = errors.New("irc: line too long")
	ErrInvalidTagKey   = errors.New("irc: invalid tag key")
	ErrMalformedOutput = errors.New("irc: cannot send malformed message")
)
