package occupancy

// DefaultAmbientThreshold is the light level above which an unreachable
// seat still counts as occupied.
const DefaultAmbientThreshold = 500

// Reconcile merges a reachability result and an optional ambient reading
// into one status.
//
// Reachability always wins: a device that answers means PRESENT whatever the
// light level. Otherwise a reading strictly above threshold means
// PRESENT_VIA_AMBIENT, and anything else is ABSENT. A nil ambient means no
// reading was supplied (the poll loop path).
func Reconcile(reachable bool, ambient *int, threshold int) Status {
	if reachable {
		return StatusPresent
	}
	if ambient != nil && *ambient > threshold {
		return StatusPresentViaAmbient
	}
	return StatusAbsent
}
