// cmd/stayhome/main.go
package main

import (
	"context"
	"log"

	"github.com/dalemusser/stayhome/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
