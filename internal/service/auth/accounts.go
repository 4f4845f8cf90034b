package auth

import (
	"strings"

	"github.com/kirinyoku/bpms/internal/domain"
)

// DemoAccounts is the fixed credential list of the demo build.
var DemoAccounts = []domain.Account{
	{Email: "eventmanager@gmail.com", Password: "password123", Role: domain.RoleEventManager},
	{Email: "judge@gmail.com", Password: "password123", Role: domain.RoleJudge},
	{Email: "contestant@gmail.com", Password: "password123", Role: domain.RoleContestant},
	{Email: "audience@gmail.com", Password: "password123", Role: domain.RoleAudience},
}

func findAccount(accounts []domain.Account, email, password string) (domain.Account, bool) {
	for _, a := range accounts {
		if strings.EqualFold(a.Email, email) && a.Password == password {
			return a, true
		}
	}
	return domain.Account{}, false
}
