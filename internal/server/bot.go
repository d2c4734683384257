package server

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/miguelrl/cabina/client/internal/config"
)

// Bot answers intervention chat messages.
type Bot interface {
	Reply(ctx context.Context, message string) (string, error)
}

const interventionSystemPrompt = "Eres un asistente de intervención en crisis dentro de una cabina de " +
	"análisis emocional. Responde en español, con calma y empatía, en dos o " +
	"tres frases. Nunca des consejos médicos; si detectas riesgo, recuerda a " +
	"la persona que hay ayuda disponible en la línea 800-911-2000."

// ArkBot generates replies through an Ark-hosted chat model.
type ArkBot struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkBot builds the prompt/model chain from the configured Ark
// credentials.
func NewArkBot(ctx context.Context, cfg config.BotConfig) (*ArkBot, error) {
	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkBot{chain: runnable}, nil
}

// Reply runs one chat exchange through the chain.
func (b *ArkBot) Reply(ctx context.Context, message string) (string, error) {
	response, err := b.chain.Invoke(ctx, map[string]any{
		"system": interventionSystemPrompt,
		"query":  message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	log.Printf("[bot] generated reply, length=%d", len(response.Content))
	return response.Content, nil
}

// ScriptedBot is the fallback used when no Ark credentials are present:
// canned empathetic replies so the booth stays usable offline.
type ScriptedBot struct {
	rng *rand.Rand
}

// NewScriptedBot seeds the canned-reply picker.
func NewScriptedBot(seed int64) *ScriptedBot {
	return &ScriptedBot{rng: rand.New(rand.NewSource(seed))}
}

var scriptedReplies = []string{
	"Gracias por contármelo. Estoy aquí contigo, tómate tu tiempo.",
	"Te escucho. ¿Quieres contarme un poco más sobre cómo te sientes?",
	"Respira despacio. No tienes que resolverlo todo ahora mismo.",
	"Lo que sientes es válido. Estoy aquí para acompañarte.",
	"Si lo necesitas, la línea 800-911-2000 está disponible a cualquier hora.",
}

// Reply picks a canned response; greetings get a greeting back.
func (b *ScriptedBot) Reply(_ context.Context, message string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if strings.HasPrefix(normalized, "hola") {
		return "hola, ¿cómo estás?", nil
	}
	return scriptedReplies[b.rng.Intn(len(scriptedReplies))], nil
}
