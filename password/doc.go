// Package password hashes passwords with argon2id and verifies stored hashes.
//
// New hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify also accepts legacy bcrypt hashes ($2a$, $2b$, $2y$). NeedsRehash
// reports true for those and for argon2id hashes made with weaker
// parameters, so the caller can upgrade them after a successful login.
//
// Password policy (minimum length, composition) is not enforced here.
package password
