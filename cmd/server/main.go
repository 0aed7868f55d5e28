package main

import (
	"go.uber.org/fx"

	fxmodules "github.com/EternisAI/persona-twin/pkg/bootstrap/fx"
)

// main runs the persona API until SIGINT or SIGTERM, then drains the HTTP
// server and closes the database pool.
func main() {
	fx.New(
		fxmodules.AppModule,
		fxmodules.WithCharmLogger,
	).Run()
}
