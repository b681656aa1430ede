package server

// secretsMatch reports whether two connections hold the same secret. A
// missing secret never matches anything, including another missing secret.
func secretsMatch(a, b *conn) bool {
	return a.secret != nil && b.secret != nil && *a.secret == *b.secret
}

// affectedBySecretChange returns the peers whose match status with c actually
// flipped when c's secret moved from oldSecret to its current value. A peer
// without a secret of its own never matched and never will, so it is skipped
// outright. Pure computation; the caller sends the notifications.
func affectedBySecretChange(c *conn, oldSecret *string, members []*conn) []*conn {
	var affected []*conn
	for _, peer := range members {
		if peer == c || peer.secret == nil {
			continue
		}
		matchedOld := oldSecret != nil && *peer.secret == *oldSecret
		matchesNew := secretsMatch(c, peer)
		if matchedOld != matchesNew {
			affected = append(affected, peer)
		}
	}
	return affected
}
