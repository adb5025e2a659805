// issue-token signs a bearer token with API_SECRET for local tooling and
// smoke tests against the kitchen API and the /ws endpoint.
//
// Usage:
//
//	API_SECRET=... go run ./cmd/issue-token -id admin-1 -email admin@example.com -roles ADMIN
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
)

func main() {
	id := flag.String("id", "", "User id carried by the token (required).")
	email := flag.String("email", "", "User email.")
	firstName := flag.String("first-name", "", "User first name.")
	lastName := flag.String("last-name", "", "User last name.")
	roles := flag.String("roles", models.RoleAdmin, "Comma separated roles (ROOT, ADMIN, MEMBER).")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime.")
	flag.Parse()

	if strings.TrimSpace(*id) == "" {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(2)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		r = strings.ToUpper(strings.TrimSpace(r))
		switch r {
		case "":
			continue
		case models.RoleRoot, models.RoleAdmin, models.RoleMember:
			roleList = append(roleList, r)
		default:
			fmt.Fprintf(os.Stderr, "unknown role %q\n", r)
			os.Exit(2)
		}
	}

	token, err := utils.JwtGenerate(utils.JwtCustomClaim{
		ID:        strings.TrimSpace(*id),
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		Roles:     utils.UniqueSlice(roleList),
	}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
