// cmd/api/main.go
package main

import "github.com/your-org/marketplace-backend/cmd/api/commands"

func main() {
	commands.Execute()
}
