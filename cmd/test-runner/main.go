package main

import (
	"os"

	"github.com/blackwell-systems/buildgate/internal/app"
)

func main() {
	os.Exit(app.ExecuteTestRunner())
}
