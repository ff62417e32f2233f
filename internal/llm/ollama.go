package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"orienta-rag/internal/models"
)

const noContextAnswer = "Je n'ai pas trouvé d'information sur ce point dans la documentation officielle des établissements."

// OllamaLLM handles interactions with the Ollama LLM API
type OllamaLLM struct {
	Client *api.Client
	Model  string
}

// NewOllamaLLM creates a new Ollama LLM client. An empty host uses OLLAMA_HOST.
func NewOllamaLLM(host string, model string) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid ollama host %q", host)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaLLM{
		Client: client,
		Model:  model,
	}, nil
}

// GeneratePrompt builds the prompt around a retrieved context block. With an
// empty block the model answers from general knowledge and says so.
func (o *OllamaLLM) GeneratePrompt(query string, contextBlock string) string {
	var promptBuilder strings.Builder

	promptBuilder.WriteString("Tu es un conseiller d'orientation spécialisé dans les écoles supérieures marocaines. ")
	promptBuilder.WriteString("Réponds en français, de façon précise et concise. ")

	if contextBlock == "" {
		promptBuilder.WriteString("Aucun document pertinent n'a été trouvé pour cette question. ")
		promptBuilder.WriteString("Réponds à partir de tes connaissances générales et précise que l'information " +
			"n'a pas été vérifiée dans la documentation officielle des établissements.\n\n")
	} else {
		promptBuilder.WriteString("Appuie-toi uniquement sur le contexte fourni. ")
		promptBuilder.WriteString("Cite les établissements, seuils, frais et dates exactement comme dans le contexte et indique la source entre crochets. ")
		promptBuilder.WriteString("Si la réponse n'est pas dans le contexte, réponds : '" + noContextAnswer + "'\n\n")
		promptBuilder.WriteString(contextBlock)
		promptBuilder.WriteString("\n\n")
	}

	promptBuilder.WriteString("Question : " + query + "\n\n")
	promptBuilder.WriteString("Réponse : ")

	return promptBuilder.String()
}

// GenerateResponse generates a response from the LLM
func (o *OllamaLLM) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": 0.1,
			"num_predict": 1024,
		},
	}

	var responseBuilder strings.Builder

	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return strings.TrimSpace(responseBuilder.String()), nil
}

// Answer answers a query from a context block built over sources
func (o *OllamaLLM) Answer(ctx context.Context, query string, contextBlock string, sources []models.DocumentChunk) (*models.Response, error) {
	prompt := o.GeneratePrompt(query, contextBlock)

	answer, err := o.GenerateResponse(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	return &models.Response{
		Answer:    answer,
		Sources:   sources,
		Grounded:  contextBlock != "",
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}
