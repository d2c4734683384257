// cabina is the booth operator console: it drives the client core against
// the analysis service and renders its read-only snapshots as text.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/miguelrl/cabina/client/internal/config"
	chatseq "github.com/miguelrl/cabina/client/internal/service/chat"
	"github.com/miguelrl/cabina/client/internal/service/eventlog"
	"github.com/miguelrl/cabina/client/internal/service/gateway"
	"github.com/miguelrl/cabina/client/internal/service/push"
	sessionsvc "github.com/miguelrl/cabina/client/internal/service/session"
	"github.com/miguelrl/cabina/client/internal/service/state"
)

const usage = `comandos:
  iniciar          inicia una sesión de análisis
  finalizar        finaliza la sesión activa
  chat <mensaje>   envía un mensaje al bot de intervención
  estado           muestra el estado emocional actual
  registro         muestra el registro de conexión
  salir            termina la consola`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: no se pudo cargar .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuración inválida: %v", err)
	}

	gw := gateway.New(cfg.Client.APIBaseURL, cfg.Client.RequestTimeout)
	reconciler := state.New()
	trace := eventlog.New()
	channel := push.NewManager(cfg.Client.PushURL, reconciler, trace, push.DefaultOptions())
	defer channel.Detach()
	sequencer := chatseq.NewSequencer(gw)
	booth := sessionsvc.NewController(gw, channel, reconciler, sequencer, trace)

	fmt.Println("Sistema de Análisis Emocional — consola de cabina")
	fmt.Println(usage)

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		printStatus(booth)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		command, rest, _ := strings.Cut(line, " ")

		switch command {
		case "":
		case "iniciar":
			if err := booth.StartSession(ctx); err != nil {
				fmt.Printf("error al iniciar sesión: %v\n", err)
			}
		case "finalizar":
			if err := booth.EndSession(ctx); err != nil {
				fmt.Printf("error al finalizar sesión: %v\n", err)
			}
		case "chat":
			if !booth.SubmitChat(ctx, rest) {
				fmt.Println("nada enviado: se necesita una sesión activa y un mensaje no vacío")
			}
		case "estado":
			printState(booth)
		case "registro":
			for _, entry := range booth.Trace() {
				fmt.Println(entry)
			}
		case "salir":
			return
		default:
			fmt.Println(usage)
		}
	}
}

func printStatus(booth *sessionsvc.Controller) {
	current := booth.Session()
	marker := "sin sesión"
	if current.Active() {
		marker = "sesión " + current.ID
	}
	if booth.Emergency() {
		marker += " [EMERGENCIA]"
	}
	fmt.Printf("(%s) > ", marker)
}

func printState(booth *sessionsvc.Controller) {
	current := booth.State()
	fmt.Printf("Emoción: %s | Riesgo: %s | Confianza: %.0f%%\n",
		strings.ToUpper(current.Emotion), strings.ToUpper(string(current.RiskLevel)), current.Confidence*100)
	for _, exchange := range booth.History() {
		fmt.Printf("  [%s] %s: %s\n", exchange.Timestamp.Format("15:04:05"), exchange.Role, exchange.Content)
	}
}
