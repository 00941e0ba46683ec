package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it for streaming channels whose values the caller does not need, such
// as STT partials, so the producer never blocks on them.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
