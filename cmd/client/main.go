package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"raftkv/client"
)

func main() {
	serverAddr := flag.String("server", "localhost:6666", "Address of any replica in the cluster")
	flag.Parse()

	printBanner()
	log.Printf("📡 Connecting to %s", *serverAddr)

	kvClient := client.NewKVClient(*serverAddr)
	log.Println("✅ Ready")
	fmt.Println()
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		switch cmd {
		case "CREATE":
			if len(parts) < 3 {
				fmt.Println("Usage: CREATE <key> <value>")
				continue
			}
			key, value := parts[1], strings.Join(parts[2:], " ")
			if err := kvClient.Create(key, value); err != nil {
				fmt.Printf("❌ Error: %v\n", err)
			} else {
				fmt.Println("✅ OK")
			}

		case "GET":
			if len(parts) != 2 {
				fmt.Println("Usage: GET <key>")
				continue
			}
			value, err := kvClient.Get(parts[1])
			if err != nil {
				fmt.Printf("❌ Error: %v\n", err)
			} else {
				fmt.Printf("📦 %s\n", value)
			}

		case "UPDATE":
			if len(parts) < 3 {
				fmt.Println("Usage: UPDATE <key> <value>")
				continue
			}
			key, value := parts[1], strings.Join(parts[2:], " ")
			if err := kvClient.Update(key, value); err != nil {
				fmt.Printf("❌ Error: %v\n", err)
			} else {
				fmt.Println("✅ OK")
			}

		case "DELETE":
			if len(parts) != 2 {
				fmt.Println("Usage: DELETE <key>")
				continue
			}
			if err := kvClient.Delete(parts[1]); err != nil {
				fmt.Printf("❌ Error: %v\n", err)
			} else {
				fmt.Println("🗑️  Deleted")
			}

		case "CAS":
			if len(parts) != 4 {
				fmt.Println("Usage: CAS <key> <old-value> <new-value>")
				continue
			}
			ok, err := kvClient.Cas(parts[1], parts[2], parts[3])
			if err != nil {
				fmt.Printf("❌ Error: %v\n", err)
			} else if ok {
				fmt.Println("✅ swapped")
			} else {
				fmt.Println("⚠️  old value did not match, unchanged")
			}

		case "STATUS":
			fmt.Printf("Connected to %s\n", *serverAddr)

		case "HELP":
			printHelp()

		case "QUIT", "EXIT":
			fmt.Println("👋 Disconnecting...")
			return

		default:
			fmt.Printf("❓ Unknown command: %s\n", cmd)
			fmt.Println("Type HELP for available commands")
		}
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("Error reading input: %v", err)
	}
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║     🖥️  raftkv CLI Client                                 ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}

func printHelp() {
	help := `
📝 Available Commands:
  CREATE <key> <value>          Store a key-value pair
  GET <key>                     Retrieve value by key (local read)
  UPDATE <key> <value>          Update an existing key
  DELETE <key>                  Delete a key
  CAS <key> <old> <new>         Compare-and-swap a key's value
  STATUS                        Show which replica the CLI talks to
  HELP                          Show this help message
  QUIT / EXIT                   Disconnect
`
	fmt.Println(help)
}
