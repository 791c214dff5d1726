package auth

import "golang.org/x/crypto/bcrypt"

// productionHashCost is applied when a hasher is built with a zero cost.
const productionHashCost = 12

func passwordHashCost() int {
	if raceEnabled {
		return bcrypt.DefaultCost
	}
	return productionHashCost
}
