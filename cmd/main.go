// cmd/main.go
package main

import (
	"go-dine-api/app"
)

// @title           Go-Dine API
// @version         1.0
// @description     Ordering API for the dine customer and restaurant apps.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-KEY
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
