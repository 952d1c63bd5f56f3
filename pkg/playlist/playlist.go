// Package playlist contains a M3U8 media playlist decoder and encoder.
package playlist

const (
	maxSupportedVersion = 3
)
