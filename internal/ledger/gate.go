package ledger

// IsOwner reports whether id is the stored owner. The zero identity is never
// the owner, including before initialization.
func IsOwner(st State, id Identity) bool {
	return !id.IsZero() && id == st.Owner
}

// RequireOwner returns an Unauthorized error unless id is the stored owner.
// Privileged operations call it on the freshly loaded State, before any write.
func RequireOwner(st State, id Identity) error {
	if !IsOwner(st, id) {
		return newUnauthorizedError(id)
	}
	return nil
}
