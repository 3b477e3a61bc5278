package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"laborguard/internal/config"
	"laborguard/internal/db"
	"laborguard/internal/domain"
	"laborguard/internal/engine"
	"laborguard/internal/migrate"
	"laborguard/internal/repo"
	"laborguard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "lg",
	Short: "LaborGuard CLI",
	Long: `LaborGuard manages autonomous contractor allocations under Brazilian
labor-risk rules. Allocations pass through a risk gate scored on consecutive
days, monthly volume and client tenure; workers who trip the legal continuity
limit are blocked automatically and every block lands in an append-only
ledger. Autonomy metrics (refusals, client and location diversity) feed the
fleet-wide composite risk ranking.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
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
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("LABORGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(locationCmd())
	rootCmd.AddCommand(allocationCmd())
	rootCmd.AddCommand(operationCmd())
	rootCmd.AddCommand(complianceCmd())
	rootCmd.AddCommand(autonomyCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- worker ---

func workerCmd() *cobra.Command {
	w := &cobra.Command{Use: "worker", Short: "Manage workers"}
	w.AddCommand(workerRegisterCmd())
	w.AddCommand(workerListCmd())
	w.AddCommand(workerShowCmd())
	w.AddCommand(workerPendingCmd())
	w.AddCommand(workerApproveCmd())
	w.AddCommand(workerRejectCmd())
	w.AddCommand(workerRiskCmd())
	return w
}

func workerRegisterCmd() *cobra.Command {
	var reg engine.WorkerRegistration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a worker (stays pending until approved)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.RegisterWorker(ctx, reg)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&reg.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&reg.CPF, "cpf", "", "CPF")
	cmd.Flags().StringVar(&reg.DateOfBirth, "birth", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&reg.MotherName, "mother", "", "mother's name")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email")
	cmd.Flags().StringVar(&reg.City, "city", "", "city")
	cmd.Flags().StringVar(&reg.State, "state", "", "state")
	cmd.Flags().StringVar(&reg.PixKey, "pix-key", "", "PIX key")
	cmd.Flags().StringVar(&reg.PixKeyType, "pix-key-type", "", "PIX key type (cpf, cnpj, email, phone, random)")
	cmd.Flags().StringVar(&reg.WorkerType, "type", "daily", "worker type (daily, freelancer, mei, clt)")
	cmd.Flags().Float64Var(&reg.DailyRate, "rate", 0, "daily rate")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cpf")
	_ = cmd.MarkFlagRequired("birth")
	return cmd
}

func workerListCmd() *cobra.Command {
	var f repo.WorkerFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				workers, err := e.ListWorkers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(workers)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Registration", "Risk", "Blocked"})
				for _, w := range workers {
					tw.AppendRow(table.Row{w.ID, w.FullName, w.Status, w.RegistrationStatus, w.RiskLevel, w.IsBlocked})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (inactive, active, blocked)")
	cmd.Flags().StringVar(&f.RegistrationStatus, "registration", "", "registration filter (pending, approved, rejected)")
	return cmd
}

func workerShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <worker-id>",
		Short: "Show a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Worker(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func workerPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending registrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				workers, err := e.PendingWorkers(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(workers)
			})
		},
	}
	return cmd
}

func workerApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <worker-id>",
		Short: "Approve a pending registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.ApproveWorker(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func workerRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <worker-id>",
		Short: "Reject a pending registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.RejectWorker(ctx, args[0], reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func workerRiskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk <worker-id>",
		Short: "Composite risk profile for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				row, err := e.WorkerRiskProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(row)
			})
		},
	}
	return cmd
}

// --- client / location ---

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Short: "Manage clients"}
	c.AddCommand(clientCreateCmd())
	c.AddCommand(clientListCmd())
	return c
}

func clientCreateCmd() *cobra.Command {
	var name, cnpj string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateClient(ctx, name, cnpj)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&cnpj, "cnpj", "", "CNPJ")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cnpj")
	return cmd
}

func clientListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListClients(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func locationCmd() *cobra.Command {
	l := &cobra.Command{Use: "location", Short: "Manage work locations"}
	l.AddCommand(locationCreateCmd())
	l.AddCommand(locationListCmd())
	return l
}

func locationCreateCmd() *cobra.Command {
	var clientID, name, city string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateLocation(ctx, clientID, name, city)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&name, "name", "", "location name")
	cmd.Flags().StringVar(&city, "city", "", "city")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func locationListCmd() *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListLocations(ctx, clientID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id filter")
	return cmd
}

// --- allocation ---

func allocationCmd() *cobra.Command {
	a := &cobra.Command{Use: "allocation", Short: "Manage allocations"}
	a.AddCommand(allocationCreateCmd())
	a.AddCommand(allocationListCmd())
	a.AddCommand(allocationSuggestCmd())
	return a
}

func allocationCreateCmd() *cobra.Command {
	var opts engine.AllocationOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Allocate a worker through the risk gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateAllocation(ctx, opts)
				if err != nil {
					return err
				}
				if res.Warning != "" && !viper.GetBool("json") {
					fmt.Println("warning:", res.Warning)
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.WorkerID, "worker", "", "worker id")
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&opts.LocationID, "location", "", "location id")
	cmd.Flags().StringVar(&opts.WorkDate, "date", "", "work date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.JobFunction, "function", "", "job function")
	cmd.Flags().Float64Var(&opts.DailyRate, "rate", 0, "daily rate")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("function")
	return cmd
}

func allocationListCmd() *cobra.Command {
	var f repo.AllocationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAllocations(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Worker", "Client", "Date", "Function", "Streak", "Flagged"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.WorkerID, a.ClientID, a.WorkDate, a.JobFunction, a.ConsecutiveDays, a.RiskFlag})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkerID, "worker", "", "worker id filter")
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id filter")
	cmd.Flags().StringVar(&f.WorkDate, "date", "", "work date filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func allocationSuggestCmd() *cobra.Command {
	var clientID, locationID string
	var quantity int
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest workers by ascending risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.SuggestWorkers(ctx, clientID, locationID, quantity)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Worker", "Name", "Score", "Level"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.Worker.ID, s.Worker.FullName, s.Risk.Score, s.Risk.Level})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&locationID, "location", "", "location id")
	cmd.Flags().IntVar(&quantity, "quantity", 5, "workers needed")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

// --- operation ---

func operationCmd() *cobra.Command {
	o := &cobra.Command{Use: "operation", Short: "Manage operations"}
	o.AddCommand(operationCreateCmd())
	o.AddCommand(operationListCmd())
	o.AddCommand(operationShowCmd())
	o.AddCommand(operationAcceptCmd())
	o.AddCommand(operationStartCmd())
	o.AddCommand(operationCompleteCmd())
	o.AddCommand(operationCheckInCmd())
	o.AddCommand(operationCheckOutCmd())
	o.AddCommand(operationIncidentCmd())
	o.AddCommand(operationIncidentsCmd())
	return o
}

// parseMember parses "worker-id:job-function[:daily-rate]".
func parseMember(raw string) (engine.OperationMemberInput, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return engine.OperationMemberInput{}, fmt.Errorf("invalid member %q, expected worker-id:job-function[:daily-rate]", raw)
	}
	m := engine.OperationMemberInput{WorkerID: parts[0], JobFunction: parts[1]}
	if len(parts) == 3 && parts[2] != "" {
		rate, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return engine.OperationMemberInput{}, fmt.Errorf("invalid member rate %q: %w", parts[2], err)
		}
		m.DailyRate = rate
	}
	return m, nil
}

func operationCreateCmd() *cobra.Command {
	var opts engine.OperationOptions
	var members []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an operation with invited crew",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range members {
				m, err := parseMember(raw)
				if err != nil {
					return err
				}
				opts.Members = append(opts.Members, m)
			}
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := e.CreateOperation(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&opts.LocationID, "location", "", "location id")
	cmd.Flags().StringVar(&opts.LeaderID, "leader", "", "leader worker id")
	cmd.Flags().StringVar(&opts.OperationName, "name", "", "operation name")
	cmd.Flags().StringVar(&opts.WorkDate, "date", "", "work date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringArrayVar(&members, "member", nil, "crew member as worker-id:job-function[:daily-rate] (repeatable)")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("leader")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func operationListCmd() *cobra.Command {
	var f repo.OperationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListOperations(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Client", "Date", "Status"})
				for _, op := range items {
					tw.AppendRow(table.Row{op.ID, op.OperationName, op.ClientID, op.WorkDate, op.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "client id filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (created, in_progress, completed)")
	cmd.Flags().StringVar(&f.WorkDate, "date", "", "work date filter")
	cmd.Flags().StringVar(&f.LeaderID, "leader", "", "leader filter")
	return cmd
}

func operationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show an operation with its crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				detail, err := e.Operation(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(detail)
			})
		},
	}
	return cmd
}

func operationAcceptCmd() *cobra.Command {
	var cpf string
	cmd := &cobra.Command{
		Use:   "accept <member-id>",
		Short: "Accept an invitation (requires the worker's CPF)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AcceptOperation(ctx, args[0], cpf, "")
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&cpf, "cpf", "", "worker CPF")
	_ = cmd.MarkFlagRequired("cpf")
	return cmd
}

func operationStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <operation-id>",
		Short: "Start an operation (leader only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				op, err := e.StartOperation(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(op)
			})
		},
	}
	return cmd
}

func operationCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <operation-id>",
		Short: "Complete an operation (leader only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				op, err := e.CompleteOperation(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(op)
			})
		},
	}
	return cmd
}

func operationCheckInCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-in <member-id>",
		Short: "Check a crew member in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CheckInMember(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func operationCheckOutCmd() *cobra.Command {
	var opts engine.CheckOutOptions
	cmd := &cobra.Command{
		Use:   "check-out <member-id>",
		Short: "Check a crew member out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CheckOutMember(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.TookMeal, "meal", false, "took meal")
	cmd.Flags().BoolVar(&opts.UsedEPI, "epi", false, "used EPI")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	return cmd
}

func operationIncidentCmd() *cobra.Command {
	var opts engine.IncidentOptions
	cmd := &cobra.Command{
		Use:   "incident <operation-id>",
		Short: "Report an incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.OperationID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ReportIncident(ctx, opts)
				if err != nil {
					return err
				}
				if res.AutoBlocked && !viper.GetBool("json") {
					fmt.Println("worker automatically blocked for this incident")
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.MemberID, "member", "", "crew member id")
	cmd.Flags().StringVar(&opts.IncidentType, "type", "", "incident type")
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "severity (low, medium, high, critical)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what happened")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("severity")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func operationIncidentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents <operation-id>",
		Short: "List incidents for an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Incidents(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

// --- compliance ---

func complianceCmd() *cobra.Command {
	c := &cobra.Command{Use: "compliance", Short: "Blocks and continuity rules"}
	c.AddCommand(complianceBlockedCmd())
	c.AddCommand(complianceHistoryCmd())
	c.AddCommand(complianceBlockCmd())
	c.AddCommand(complianceUnblockCmd())
	c.AddCommand(complianceSweepCmd())
	c.AddCommand(complianceStreakCmd())
	c.AddCommand(complianceCheckCmd())
	c.AddCommand(complianceMetricsCmd())
	return c
}

func complianceBlockedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List blocked workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				workers, err := e.BlockedWorkers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(workers)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Expires", "Reason"})
				for _, w := range workers {
					tw.AppendRow(table.Row{w.ID, w.FullName, deref(w.BlockType), deref(w.BlockExpiresAt), deref(w.BlockReason)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func complianceHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <worker-id>",
		Short: "Block ledger for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.BlockHistory(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	return cmd
}

func complianceBlockCmd() *cobra.Command {
	var opts engine.BlockOptions
	cmd := &cobra.Command{
		Use:   "block <worker-id>",
		Short: "Block a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.WorkerID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.BlockWorker(ctx, opts); err != nil {
					return err
				}
				w, err := e.Worker(ctx, opts.WorkerID)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "block reason")
	cmd.Flags().StringVar(&opts.BlockType, "type", "temporary", "block type (temporary, permanent)")
	cmd.Flags().IntVar(&opts.Days, "days", 7, "temporary block length in days")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func complianceUnblockCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "unblock <worker-id>",
		Short: "Unblock a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.UnblockWorker(ctx, args[0], reason, viper.GetString("actor-id")); err != nil {
					return err
				}
				w, err := e.Worker(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "unblock reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func complianceSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release expired temporary blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.SweepExpiredBlocks(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("unblocked %d worker(s)\n", n)
				return nil
			})
		},
	}
	return cmd
}

func complianceStreakCmd() *cobra.Command {
	var workerID, clientID string
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Current consecutive-day streak for a worker and client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				days, err := e.ConsecutiveDays(ctx, workerID, clientID)
				if err != nil {
					return err
				}
				fmt.Printf("%d consecutive day(s)\n", days)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker", "", "worker id")
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func complianceCheckCmd() *cobra.Command {
	var workerID, clientID string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Enforce the consecutive-day rule, blocking if the limit is hit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CheckContinuity(ctx, workerID, clientID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&workerID, "worker", "", "worker id")
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func complianceMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Fleet compliance totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.ComplianceMetrics(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

// --- autonomy ---

func autonomyCmd() *cobra.Command {
	a := &cobra.Command{Use: "autonomy", Short: "Refusals and autonomy metrics"}
	a.AddCommand(autonomyRefuseCmd())
	a.AddCommand(autonomyShowCmd())
	a.AddCommand(autonomyRefusalsCmd())
	a.AddCommand(autonomyRecomputeCmd())
	a.AddCommand(autonomyLowCmd())
	return a
}

func autonomyRefuseCmd() *cobra.Command {
	var opts engine.RefusalOptions
	cmd := &cobra.Command{
		Use:   "refuse",
		Short: "Record a work refusal",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ref, err := e.RegisterRefusal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ref)
			})
		},
	}
	cmd.Flags().StringVar(&opts.WorkerID, "worker", "", "worker id")
	cmd.Flags().StringVar(&opts.OperationID, "operation", "", "refused operation id")
	cmd.Flags().StringVar(&opts.ClientID, "client", "", "client id")
	cmd.Flags().StringVar(&opts.RefusalReason, "reason", "", "refusal reason")
	cmd.Flags().StringVar(&opts.RefusalType, "type", "", "refusal type")
	cmd.Flags().StringVar(&opts.RefusalDate, "date", "", "refusal date (defaults to today)")
	cmd.Flags().StringVar(&opts.Evidence, "evidence", "", "evidence reference")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("reason")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func autonomyShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <worker-id>",
		Short: "Autonomy metrics for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AutonomyMetrics(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func autonomyRefusalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refusals <worker-id>",
		Short: "List refusals recorded for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Refusals(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func autonomyRecomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute <worker-id>",
		Short: "Recompute autonomy metrics from scratch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RecomputeAutonomyMetrics(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func autonomyLowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "low",
		Short: "Workers under the autonomy threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.LowAutonomyWorkers(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

// --- risk ---

func riskCmd() *cobra.Command {
	r := &cobra.Command{Use: "risk", Short: "Fleet risk reporting"}
	r.AddCommand(riskFleetCmd())
	r.AddCommand(riskStatsCmd())
	return r
}

func riskFleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Composite risk ranking for the whole fleet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.FleetRisk(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Worker", "Name", "Score", "Level", "Streak", "Days", "Exposure"})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.WorkerID, r.WorkerName, r.RiskScore, r.RiskLevel, r.MaxConsecutiveDays, r.TotalDaysWorked, r.FinancialExposure})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func riskStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Headline risk statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.RiskStatistics(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	return cmd
}

// --- apikey ---

func apikeyCmd() *cobra.Command {
	a := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	a.AddCommand(apikeyCreateCmd())
	a.AddCommand(apikeyListCmd())
	a.AddCommand(apikeyDeleteCmd())
	return a
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name, key string
	var roles []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store an API key (only the SHA-256 hash is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				k := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: actorID,
					Name:    name,
					Roles:   roles,
					KeyHash: repo.HashAPIKey(key),
				}
				if err := r.InsertAPIKey(ctx, k); err != nil {
					return err
				}
				stored, err := r.GetAPIKeyByHash(ctx, k.KeyHash)
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&key, "key", "", "raw key material")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles granted to the key (repeatable)")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	c.AddCommand(configShowCmd())
	c.AddCommand(configInitCmd())
	return c
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective policy config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default policy config to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			target := config.Path(workspace)
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%s already exists", target)
			}
			data, err := config.Default().ToYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", target)
			return nil
		},
	}
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("LABORGUARD_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("LABORGUARD_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving LaborGuard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept the deprecated X-Actor-Id header")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

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

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
