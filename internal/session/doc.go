// Package session drives the five-stage experience timeline: welcome,
// voice prompt, voice input, orchestration, result.
//
// One session is live at a time. Stages advance on user events and on
// fallback timers, and every timer is tagged with the session id that
// armed it. The tag is revalidated under the scheduler lock at fire
// time, so starting a new session makes every timer of the old one
// inert even if it has already left the timer heap.
package session
