package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/app"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/config"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/db"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/domain"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/draft"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/errlog"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/form"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/mailer"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/migrate"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/prefs"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/protocol"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/queue"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/server"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/submit"
	"github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/internal/wizard"
	ouvidoriasdk "github.com/vini-andra/ouvidoria-gdf-main-v2-sub000/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "ouv",
	Short: "Ouvidoria do cidadão",
	Long: `Portal de ouvidoria: registre manifestações (texto, áudio, imagem ou
vídeo), de forma anônima ou identificada, e acompanhe o andamento pelo
número de protocolo e senha.

Sem conexão? A manifestação fica guardada na fila local e é enviada
automaticamente quando o portal voltar a responder.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := db.EnsureWorkspace(viper.GetString("workspace")); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("erro:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OUVIDORIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "diretório de trabalho")
	rootCmd.PersistentFlags().Bool("json", false, "saída em JSON")
	rootCmd.PersistentFlags().String("servidor", "http://127.0.0.1:8787", "endereço do portal")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "logs detalhados")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("servidor", rootCmd.PersistentFlags().Lookup("servidor"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(manifestacaoCmd())
	rootCmd.AddCommand(rascunhoCmd())
	rootCmd.AddCommand(filaCmd())
	rootCmd.AddCommand(orgaoCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(errosCmd())
}

func logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

func workspaceDir() (string, error) {
	return db.EnsureWorkspace(viper.GetString("workspace"))
}

func loadConfig() (*config.Config, error) {
	return config.LoadOptional(viper.GetString("workspace"))
}

func apiClient() *ouvidoriasdk.Client {
	c := ouvidoriasdk.New(viper.GetString("servidor"))
	c.BearerToken = os.Getenv("OUVIDORIA_TOKEN")
	return c
}

// ---- serve ----

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Iniciar o servidor HTTP do portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			wsDir, err := db.EnsureWorkspace(workspace)
			if err != nil {
				return err
			}
			e, closeDB, err := app.OpenEngine(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer closeDB()
			cfg := e.Config
			log := logger()
			log.Debug().Str("banco", db.Path(workspace)).Msg("serve: workspace pronto")
			secret := os.Getenv("OUVIDORIA_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("OUVIDORIA_JWT_SECRET é obrigatório para o perfil de ouvidor")
			}
			var m *mailer.Mailer
			if cfg.Email.Endpoint != "" {
				m = mailer.New(cfg.Email.Endpoint, cfg.Email.Remetente, cfg.Email.Tentativas, log)
				m.Janela = time.Duration(cfg.Email.JanelaSegundos) * time.Second
				m.LimitePorJanela = cfg.Email.LimitePorJanela
			}
			handler, err := server.New(server.Config{
				Engine:          e,
				BasePath:        basePath,
				Auth:            server.AuthConfig{JWTSecret: secret, Logger: log},
				Mailer:          m,
				AnexoDir:        filepath.Join(wsDir, "anexos"),
				EnviosPorMinuto: cfg.Envios.LimitePorMinuto,
				Logger:          log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Ouvidoria em http://%s%s (OpenAPI em %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "endereço de escuta")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "prefixo da API")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ator string
	var roles []string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Gerar token de operador (ouvidor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("OUVIDORIA_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("OUVIDORIA_JWT_SECRET é obrigatório")
			}
			token, err := server.NewToken(secret, ator, roles)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&ator, "ator", "", "identificador do operador")
	cmd.Flags().StringSliceVar(&roles, "perfil", []string{"ouvidor"}, "perfis do token")
	_ = cmd.MarkFlagRequired("ator")
	return cmd
}

// ---- config ----

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Configuração do portal"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Gravar ouvidoria.yml padrão no workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s já existe", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Configuração criada em", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Mostrar configuração ativa",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	return cfg
}

// ---- manifestacao ----

func manifestacaoCmd() *cobra.Command {
	m := &cobra.Command{Use: "manifestacao", Short: "Registrar e acompanhar manifestações"}
	m.AddCommand(manifestacaoNovaCmd())
	m.AddCommand(manifestacaoConsultarCmd())
	return m
}

func manifestacaoNovaCmd() *cobra.Command {
	var conteudo, assunto, orgao string
	var categorias []string
	var anonima bool
	cmd := &cobra.Command{
		Use:   "nova",
		Short: "Registrar manifestação (assistente passo a passo)",
		Long: `Sem flags, abre o assistente de sete passos. Com --conteudo, envia
direto uma manifestação de texto.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			log := logger()
			orch, filaStore, cleanup, err := newOrchestrator(cfg, wsDir, log)
			if err != nil {
				return err
			}
			defer cleanup()

			syncFila(cmd.Context(), cfg, wsDir, filaStore, log)

			if conteudo != "" {
				st := form.New()
				st.SetConteudo(form.Texto{Texto: conteudo})
				for _, c := range categorias {
					st.ToggleCategoria(c)
				}
				st.SetAssunto(assunto)
				st.SetOrgao(orgao)
				st.Anonima = anonima
				return finishSubmission(cmd.Context(), orch, st)
			}
			return runWizard(cmd.Context(), cfg, wsDir, orch)
		},
	}
	cmd.Flags().StringVar(&conteudo, "conteudo", "", "texto da manifestação (modo direto)")
	cmd.Flags().StringSliceVar(&categorias, "categoria", nil, "categorias da manifestação")
	cmd.Flags().StringVar(&assunto, "assunto", "", "assunto")
	cmd.Flags().StringVar(&orgao, "orgao", "", "órgão responsável")
	cmd.Flags().BoolVar(&anonima, "anonima", true, "manifestação anônima")
	return cmd
}

func manifestacaoConsultarCmd() *cobra.Command {
	var senha string
	cmd := &cobra.Command{
		Use:   "consultar <protocolo>",
		Short: "Acompanhar manifestação pelo protocolo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			protocolo := strings.TrimSpace(args[0])
			if !protocol.ValidProtocolo(protocolo) {
				return fmt.Errorf("protocolo em formato inválido (esperado OUV-AAAAMMDD-NNNNNN)")
			}
			if !protocol.ValidSenha(senha) {
				return fmt.Errorf("senha em formato inválido (6 letras ou números)")
			}
			tl, err := apiClient().ConsultarTimeline(cmd.Context(), protocolo, senha)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(tl)
			}
			fmt.Printf("Protocolo %s: %s\n\n", tl.Protocolo, tl.Status)
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Quando", "Status", "Observação"})
			for _, h := range tl.Historico {
				obs := ""
				if h.Observacao != nil {
					obs = *h.Observacao
				}
				tw.AppendRow(table.Row{h.RegistradoEm, h.Status, obs})
			}
			tw.Render()
			for _, r := range tl.Respostas {
				fmt.Printf("\nResposta (%s):\n%s\n", r.CriadaEm, r.Texto)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&senha, "senha", "", "senha de acompanhamento")
	_ = cmd.MarkFlagRequired("senha")
	return cmd
}

// ---- rascunho ----

func rascunhoCmd() *cobra.Command {
	r := &cobra.Command{Use: "rascunho", Short: "Rascunho de manifestação"}
	r.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Mostrar rascunho salvo",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			store := draft.NewStore(wsDir, cfg.DraftTTL())
			st, passo, ok := store.Load()
			if !ok {
				fmt.Println("Nenhum rascunho salvo.")
				return nil
			}
			fmt.Printf("Rascunho no passo %d (%s)\n", passo, wizard.Steps[passo-1].Nome)
			return printJSONOrTable(st)
		},
	})
	r.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Descartar rascunho",
		RunE: func(cmd *cobra.Command, args []string) error {
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := draft.NewStore(wsDir, cfg.DraftTTL()).Clear(); err != nil {
				return err
			}
			fmt.Println("Rascunho descartado.")
			return nil
		},
	})
	return r
}

// ---- fila ----

func filaCmd() *cobra.Command {
	f := &cobra.Command{Use: "fila", Short: "Fila de envios pendentes (offline)"}
	f.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Listar manifestações pendentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openFila()
			if err != nil {
				return err
			}
			defer cleanup()
			pending := store.Pending(cmd.Context())
			if viper.GetBool("json") {
				return printJSON(pending)
			}
			if len(pending) == 0 {
				fmt.Println("Fila vazia.")
				return nil
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Criado em", "Tentativas"})
			for _, p := range pending {
				tw.AppendRow(table.Row{p.ID, p.CriadoEm, p.Tentativas})
			}
			tw.Render()
			return nil
		},
	})
	var watch bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Enviar pendências agora",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			store, cleanup, err := openFila()
			if err != nil {
				return err
			}
			defer cleanup()
			log := logger()
			log.Debug().Str("arquivo", db.QueuePath(viper.GetString("workspace"))).Msg("fila: sincronizando")
			ctrl := queue.NewController(store, apiClient(), errlog.New(wsDir), cfg.Fila.MaxTentativas, log)
			for {
				res := ctrl.Sync(cmd.Context())
				if msg := res.Mensagem(); msg != "" {
					fmt.Println(msg)
				} else {
					fmt.Println("Nada para enviar.")
				}
				if !watch {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(cfg.SyncInterval()):
				}
			}
		},
	}
	sync.Flags().BoolVar(&watch, "watch", false, "repetir a sincronização no intervalo configurado")
	f.AddCommand(sync)
	f.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Descartar todas as pendências",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openFila()
			if err != nil {
				return err
			}
			defer cleanup()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Fila esvaziada.")
			return nil
		},
	})
	return f
}

func openFila() (*queue.Store, func(), error) {
	conn, err := db.OpenQueue(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.MigrateQueue(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return queue.NewStore(conn), func() { conn.Close() }, nil
}

// ---- orgao / prefs / erros ----

func orgaoCmd() *cobra.Command {
	o := &cobra.Command{Use: "orgao", Short: "Órgãos responsáveis"}
	o.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Listar órgãos disponíveis",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient().ListOrgaos(cmd.Context())
			if err != nil {
				// Offline: fall back to the local catalog.
				cfg, cfgErr := loadConfig()
				if cfgErr != nil {
					return err
				}
				for _, oc := range cfg.Orgaos {
					items = append(items, domain.Orgao{ID: oc.ID, Sigla: oc.Sigla, Nome: oc.Nome, Ativo: true})
				}
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Sigla", "Nome"})
			for _, it := range items {
				tw.AppendRow(table.Row{it.ID, it.Sigla, it.Nome})
			}
			tw.Render()
			return nil
		},
	})
	return o
}

func prefsCmd() *cobra.Command {
	p := &cobra.Command{Use: "prefs", Short: "Preferências de acessibilidade"}
	p.AddCommand(&cobra.Command{
		Use:   "get <chave>",
		Short: "Ler preferência (TAMANHO_FONTE, TEMA, ALTO_CONTRASTE)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			fmt.Println(prefs.New(wsDir).Get(args[0], ""))
			return nil
		},
	})
	p.AddCommand(&cobra.Command{
		Use:   "set <chave> <valor>",
		Short: "Gravar preferência",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			return prefs.New(wsDir).Set(args[0], args[1])
		},
	})
	return p
}

func errosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "erros",
		Short: "Falhas recentes registradas no dispositivo",
		RunE: func(cmd *cobra.Command, args []string) error {
			wsDir, err := workspaceDir()
			if err != nil {
				return err
			}
			entries, _ := errlog.New(wsDir).List()
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("Nenhuma falha registrada.")
				return nil
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Quando", "Origem", "Mensagem"})
			for _, e := range entries {
				tw.AppendRow(table.Row{e.TS, e.Origem, e.Mensagem})
			}
			tw.Render()
			return nil
		},
	}
}

// ---- wizard ----

func newOrchestrator(cfg *config.Config, wsDir string, log zerolog.Logger) (*submit.Orchestrator, *queue.Store, func(), error) {
	filaStore, cleanup, err := openFila()
	if err != nil {
		return nil, nil, nil, err
	}
	orch := &submit.Orchestrator{
		API:      apiClient(),
		Fila:     filaStore,
		Rascunho: draft.NewStore(wsDir, cfg.DraftTTL()),
		Erros:    errlog.New(wsDir),
		Config:   cfg,
		Log:      log,
	}
	return orch, filaStore, cleanup, nil
}

// syncFila replays pending submissions before a new one is started.
func syncFila(ctx context.Context, cfg *config.Config, wsDir string, store *queue.Store, log zerolog.Logger) {
	if store.Count(ctx) == 0 {
		return
	}
	ctrl := queue.NewController(store, apiClient(), errlog.New(wsDir), cfg.Fila.MaxTentativas, log)
	if msg := ctrl.Sync(ctx).Mensagem(); msg != "" {
		fmt.Println(msg)
	}
}

func runWizard(ctx context.Context, cfg *config.Config, wsDir string, orch *submit.Orchestrator) error {
	in := bufio.NewScanner(os.Stdin)
	store := draft.NewStore(wsDir, cfg.DraftTTL())
	validator := form.Validator{Config: cfg}

	st := form.New()
	machine := wizard.New()
	if saved, passo, ok := store.Load(); ok {
		fmt.Printf("Há um rascunho salvo no passo %d (%s). Continuar? [S/n] ", passo, wizard.Steps[passo-1].Nome)
		if answer := readLine(in); answer == "" || strings.EqualFold(answer, "s") {
			st = saved
			for machine.CurrentStep() < passo {
				machine.NextStep()
			}
		} else {
			_ = store.Clear()
		}
	}

	for {
		cur := machine.CurrentStep()
		step := wizard.Steps[cur-1]
		fmt.Printf("\n[%d/%d] %s (%d%%)\n%s\n", cur, wizard.NumSteps, step.Nome,
			machine.ProgressPercentage(), step.Descricao)
		if step.Opcional {
			fmt.Println("(opcional, deixe em branco para pular)")
		}

		switch cur {
		case 1:
			promptConteudo(in, st, cfg)
		case 2:
			promptCategorias(in, st, cfg)
		case 3:
			promptAssunto(in, st, cfg)
		case 4:
			promptContexto(in, st)
		case 5:
			promptAnexos(in, st)
		case 6:
			promptIdentificacao(in, st)
		case 7:
			done, err := promptRevisao(ctx, in, st, orch)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			// The citizen asked to go back for edits.
			machine.PreviousStep()
			continue
		}

		if !validator.ValidateStep(cur, st) {
			machine.SetStepStatus(cur, wizard.StatusError)
			for _, msg := range st.Erros {
				fmt.Println("  !", msg)
			}
			continue
		}
		machine.NextStep()
		if err := store.Save(st, machine.CurrentStep()); err != nil {
			fmt.Println("  ! não foi possível salvar o rascunho:", err)
		}
	}
}

func readLine(in *bufio.Scanner) string {
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func promptConteudo(in *bufio.Scanner, st *form.State, cfg *config.Config) {
	fmt.Println("Canal: 1) texto  2) áudio  3) imagem  4) vídeo")
	fmt.Print("> ")
	switch readLine(in) {
	case "2":
		fmt.Print("Arquivo de áudio: ")
		blob, ok := readBlob(readLine(in))
		if !ok {
			return
		}
		fmt.Print("Duração em segundos: ")
		dur, _ := strconv.Atoi(readLine(in))
		st.SetConteudo(form.Audio{Blob: blob, DuracaoSegundos: dur})
	case "3":
		fmt.Print("Arquivo de imagem: ")
		path := readLine(in)
		blob, ok := readBlob(path)
		if !ok {
			return
		}
		st.SetConteudo(form.Imagem{Blob: blob, Nome: filepath.Base(path), TipoMIME: mimeFor(path)})
	case "4":
		fmt.Print("Arquivo de vídeo: ")
		path := readLine(in)
		blob, ok := readBlob(path)
		if !ok {
			return
		}
		st.SetConteudo(form.Video{Blob: blob, Nome: filepath.Base(path), TipoMIME: mimeFor(path)})
	default:
		fmt.Printf("Descreva sua manifestação (%d a %d caracteres):\n> ",
			cfg.Canais.Texto.MinCaracteres, cfg.Canais.Texto.MaxCaracteres)
		st.SetConteudo(form.Texto{Texto: readLine(in)})
	}
}

func promptCategorias(in *bufio.Scanner, st *form.State, cfg *config.Config) {
	fmt.Println("Categorias:", strings.Join(cfg.Categorias, ", "))
	fmt.Print("Escolha uma ou mais, separadas por vírgula: ")
	st.Categorias = nil
	for _, tag := range strings.Split(readLine(in), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			st.ToggleCategoria(tag)
		}
	}
}

func promptAssunto(in *bufio.Scanner, st *form.State, cfg *config.Config) {
	fmt.Print("Assunto: ")
	st.SetAssunto(readLine(in))
	fmt.Println("Órgãos:")
	for _, o := range cfg.Orgaos {
		fmt.Printf("  %s - %s (%s)\n", o.ID, o.Nome, o.Sigla)
	}
	fmt.Print("Órgão responsável: ")
	st.SetOrgao(readLine(in))
}

func promptContexto(in *bufio.Scanner, st *form.State) {
	fmt.Print("Local do fato: ")
	st.Local = readLine(in)
	fmt.Print("Data do fato (AAAA-MM-DD): ")
	if raw := readLine(in); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			st.DataFato = &t
		} else {
			fmt.Println("  ! data ignorada, formato esperado AAAA-MM-DD")
		}
	}
	fmt.Print("Envolvidos: ")
	st.Envolvidos = readLine(in)
	fmt.Print("Testemunhas: ")
	st.Testemunhas = readLine(in)
}

func promptAnexos(in *bufio.Scanner, st *form.State) {
	fmt.Print("Arquivos de apoio (caminhos separados por vírgula): ")
	for _, path := range strings.Split(readLine(in), ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		blob, ok := readBlob(path)
		if !ok {
			continue
		}
		st.AddAnexo(form.Anexo{
			Nome:     filepath.Base(path),
			TipoMIME: mimeFor(path),
			Tamanho:  int64(len(blob)),
			Blob:     blob,
		})
	}
}

func promptIdentificacao(in *bufio.Scanner, st *form.State) {
	fmt.Print("Deseja se identificar? [s/N] ")
	if answer := readLine(in); strings.EqualFold(answer, "s") {
		fmt.Print("Nome: ")
		nome := readLine(in)
		fmt.Print("E-mail: ")
		email := readLine(in)
		st.SetIdentificacao(false, nome, email)
		fmt.Print("Autoriza o uso dos seus dados para tratar esta manifestação? [s/N] ")
		st.SetConsentimento(strings.EqualFold(readLine(in), "s"))
		fmt.Print("Tratar com sigilo? [s/N] ")
		st.Sigilosa = strings.EqualFold(readLine(in), "s")
	} else {
		st.SetIdentificacao(true, "", "")
	}
}

func promptRevisao(ctx context.Context, in *bufio.Scanner, st *form.State, orch *submit.Orchestrator) (bool, error) {
	fmt.Println("Resumo:")
	if st.Conteudo != nil {
		fmt.Println("  Canal:", st.Conteudo.Canal())
	}
	fmt.Println("  Categorias:", strings.Join(st.Categorias, ", "))
	fmt.Println("  Assunto:", st.Assunto)
	fmt.Println("  Órgão:", st.OrgaoID)
	if st.Anonima {
		fmt.Println("  Identificação: anônima")
	} else {
		fmt.Printf("  Identificação: %s <%s>\n", st.Nome, st.Email)
	}
	if len(st.Anexos) > 0 {
		fmt.Printf("  Anexos: %d arquivo(s)\n", len(st.Anexos))
	}
	fmt.Print("Enviar agora? [S/n] ")
	if answer := readLine(in); answer != "" && !strings.EqualFold(answer, "s") {
		return false, nil
	}
	return true, finishSubmission(ctx, orch, st)
}

func finishSubmission(ctx context.Context, orch *submit.Orchestrator, st *form.State) error {
	out, err := orch.Enviar(ctx, st)
	if errors.Is(err, submit.ErrFormularioInvalido) {
		for _, msg := range st.Erros {
			fmt.Println("  !", msg)
		}
		return err
	}
	var falha *submit.Falha
	if errors.As(err, &falha) {
		fmt.Println("  !", falha.Mensagem)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(out.Mensagem)
	fmt.Println("Protocolo:", out.Protocolo)
	if out.Senha != "" {
		fmt.Println("Senha de acompanhamento:", out.Senha)
	}
	for _, aviso := range out.Avisos {
		fmt.Println("Atenção:", aviso)
	}
	return nil
}

func readBlob(path string) ([]byte, bool) {
	if path == "" {
		return nil, false
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("  ! não foi possível ler", path, "-", err)
		return nil, false
	}
	return blob, true
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ---- output helpers ----

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
