// Package live holds the per-call audio ingestion primitives: RMS energy
// helpers, the audio format description, and the voice activity detector that
// decides when a caller has finished an utterance.
//
// # Data Flow
//
//	media frame → codec.DecodeFrame → Detector.AddChunk
//	                                      │
//	                      IsFinishedSpeaking() == true
//	                                      │
//	                    DrainAsAudio() (WAV) → transcription
//
// # Detector states
//
//	idle → speaking → finished
//	  ↑                  │
//	  └──── Reset() ─────┘
//
// EnergyDetector is a fixed-threshold detector: it compares each chunk's RMS
// energy against a constant and does not adapt to line noise. Lines with a
// loud noise floor will never report silence; use a different Detector there.
package live
