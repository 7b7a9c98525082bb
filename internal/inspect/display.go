package inspect

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openprx/openpr/internal/logging"
)

// displayToolResult displays the result of a tool call
func displayToolResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Println("Tool returned an error:")
		for _, content := range result.Content {
			if textContent, ok := mcp.AsTextContent(content); ok {
				fmt.Printf("  %s\n", textContent.Text)
			}
		}
		return
	}

	fmt.Println("Result:")
	for _, content := range result.Content {
		displayToolResultContent(content)
	}
}

// displayToolResultContent displays a single content item from a tool result
func displayToolResultContent(content mcp.Content) {
	if textContent, ok := mcp.AsTextContent(content); ok {
		displayTextContent(textContent.Text)
	} else if imageContent, ok := mcp.AsImageContent(content); ok {
		fmt.Printf("[Image: MIME type %s, %d bytes]\n", imageContent.MIMEType, len(imageContent.Data))
	}
}

// displayTextContent displays text content, pretty-printing JSON if possible
func displayTextContent(text string) {
	var jsonData any
	if err := json.Unmarshal([]byte(text), &jsonData); err == nil {
		fmt.Println(logging.PrettyJSON(jsonData))
	} else {
		fmt.Println(text)
	}
}
