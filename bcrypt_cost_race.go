//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds hash at the bcrypt default so suites stay inside timeouts
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
