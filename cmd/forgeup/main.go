package main

import (
	"os"

	"github.com/forgeup/forgeup/internal/app"
)

func main() {
	os.Exit(app.Run())
}
