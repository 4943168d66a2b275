// Package main is a development utility for generating an API key with its
// SHA-256 hash pre-computed. It prints the raw key, the hash, and ready-to-run
// redis commands so developers can seed a usable registration in a local store
// without going through the full register and confirm flow. Do not use
// generated keys in production, register through the API instead.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/rocketstack/roadmapper/internal/keys"
)

func main() {
	owner, repo := "octocat", "hello-world"
	if len(os.Args) == 3 {
		owner, repo = os.Args[1], os.Args[2]
	}

	key, err := keys.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}
	hash := keys.HashKey(key)

	fmt.Println("==========================================================")
	fmt.Println("API Key Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nKey:  %s\n", key)
	fmt.Printf("Hash: %s\n", hash)
	fmt.Println("\n==========================================================")
	fmt.Println("Redis seed:")
	fmt.Println("==========================================================")
	fmt.Printf(`
HSET apikey:%s owner %s repo %s tier free email dev@local
SET repo-key:%s/%s %s
`, hash, owner, repo, owner, repo, hash)
	fmt.Println("\n==========================================================")
	fmt.Printf(".roadmapper file content: %s\n", key)
	fmt.Println("==========================================================")
}
