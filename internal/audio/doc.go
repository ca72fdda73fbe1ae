// Package audio plays finished WAV files through the system audio device
// using oto/v3. It is a preview player: one file at a time, start to end,
// stoppable through the context.
package audio
