// Command hashpass prints the argon2id hash of a password, for use as password_hash of a case worker
// in the assignments seed document. The password is read from the first line of standard input.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

func main() {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal().Err(err).Msg("Failed to read password from stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		log.Fatal().Msg("Password is empty")
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	fmt.Println(hash)
}
