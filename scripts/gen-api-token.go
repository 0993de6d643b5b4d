package main

import (
	"fmt"
	"os"

	"github.com/fitforge/wearable-sync-go/internal/util"
)

func main() {
	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token: %s\n", token)
	fmt.Printf("hash:  %s\n", util.HashToken(token))
	fmt.Println("store the hash in users.api_token_hash; hand the token to the client")
}
