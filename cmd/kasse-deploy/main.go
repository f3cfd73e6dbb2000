// Command kasse-deploy provisions and updates Clubfridge Kasse kiosks.
package main

import "github.com/clubfridge/kasse-deploy/cmd/kasse-deploy/cmd"

func main() {
	cmd.Execute()
}
