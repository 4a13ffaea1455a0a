package main

import (
	"os"

	"horse.fit/gigradar/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
