// Package main runs the TaskHub API server.
package main

import (
	"log"

	"github.com/taskhub/taskhub/app"
	"github.com/taskhub/taskhub/modules/categories"
	"github.com/taskhub/taskhub/modules/tasks"
	"github.com/taskhub/taskhub/modules/users"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	for _, module := range []app.Module{
		users.NewModule(),
		categories.NewModule(),
		tasks.NewModule(),
	} {
		if err := application.RegisterModule(module); err != nil {
			log.Fatalf("Failed to register %s module: %v", module.Name(), err)
		}
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
