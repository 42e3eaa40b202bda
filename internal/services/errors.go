package services

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAudioNotFound        = errors.New("audio not found")
	ErrInvalidModel         = errors.New("invalid STT model")
	ErrInvalidContentType   = errors.New("unsupported audio content type")
	ErrInvalidRole          = errors.New("invalid message role")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrEmptyAudio           = errors.New("audio is empty")
	ErrAudioTooLarge        = errors.New("audio exceeds upload limit")
)
