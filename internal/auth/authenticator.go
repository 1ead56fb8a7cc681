package auth

// CredentialHasher turns a credential into a one-way verifier and checks
// candidates against it.
type CredentialHasher interface {
	// Hash returns a salted, one-way encoding of credential.
	Hash(credential string) (string, error)

	// Verify reports whether credential matches the stored hash.
	Verify(hash, credential string) bool
}
