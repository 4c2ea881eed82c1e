package repository

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrStationNotFound = errors.New("station not found")
	ErrTrackNotFound   = errors.New("track not found")
	ErrArtistNotFound  = errors.New("artist not found")
	ErrLabelNotFound   = errors.New("label not found")
)
