// Package xp is the numeric core of the engine: bounded, rate-limited XP
// awards (chat and voice share one per-bucket cap), the chat eligibility
// gate, voice-minute accrual, and the periodic decay pass.
package xp
