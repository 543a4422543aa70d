package main

import (
	"log"

	"github.com/soporte-digital/whatsapp-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
