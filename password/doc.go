// Package password hashes account passwords with Argon2id and stores them as
// PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify reads the cost parameters from the stored string, so hashes made
// with older settings keep working. NeedsUpgrade tells the caller to rehash
// after the next successful login.
package password
