package gateway

// ChannelControl is the operator channel: lighting acks, device
// errors, and other cross-cutting announcements.
const ChannelControl = "control"

// DisplayChannel returns the broadcast channel for one display target.
func DisplayChannel(target string) string {
	return "display." + target
}

// UserChannel returns the private broadcast channel for one user.
func UserChannel(userID string) string {
	return "user." + userID
}
