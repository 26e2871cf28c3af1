package session

import "time"

// Stage identifies one point on the experience timeline.
type Stage string

// Timeline stages in order.
const (
	StageWelcome      Stage = "t1"
	StageVoiceStart   Stage = "t2"
	StageVoiceInput   Stage = "t3"
	StageOrchestrated Stage = "t4"
	StageResult       Stage = "t5"
)

// stageLabels maps each stage to its human-readable name, used on the
// wire alongside the stage id.
var stageLabels = map[Stage]string{
	StageWelcome:      "welcome",
	StageVoiceStart:   "voiceStart",
	StageVoiceInput:   "voiceInput",
	StageOrchestrated: "orchestrated",
	StageResult:       "result",
}

// Label returns the human-readable name for the stage, or the raw
// stage id when unknown.
func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// Transition causes.
const (
	CauseUserJoined     = "user_joined"
	CauseWelcomeElapsed = "welcome_elapsed"
	CauseVoiceCaptured  = "voice_captured"
	CauseVoiceFallback  = "voice_fallback"
	CauseDecision       = "decision"
	CauseResultFallback = "result_fallback"
)

// StageChange describes one timeline transition. It is handed to the
// scheduler's listener and broadcast to displays.
type StageChange struct {
	SessionID string    `json:"session_id"`
	Stage     Stage     `json:"stage"`
	Label     string    `json:"label"`
	Cause     string    `json:"cause"`
	At        time.Time `json:"at"`
}
