package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adiprasetyo/biolock/internal/biolock/device"
	"github.com/adiprasetyo/biolock/internal/biolock/embeddings"
	"github.com/adiprasetyo/biolock/internal/biolock/store"
	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

var enrollFlags struct {
	name        string
	template    int
	accessLevel int
	faces       int
}

func init() {
	enrollCmd.Flags().StringVar(&enrollFlags.name, "name", "", "display name of the new identity (required)")
	enrollCmd.Flags().IntVar(&enrollFlags.template, "template", 0, "fingerprint sensor slot to enroll (0 = face-only identity)")
	enrollCmd.Flags().IntVar(&enrollFlags.accessLevel, "access-level", 1, "access level")
	enrollCmd.Flags().IntVar(&enrollFlags.faces, "faces", 0, "number of reference face samples to capture")
	_ = enrollCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(enrollCmd)
}

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a new identity",
	Long:  "Creates an identity, optionally binds a fingerprint template slot, and optionally captures reference face embeddings. Run while the controller is stopped; the running controller picks up embedding changes via the file watcher.",
	Args:  cobra.NoArgs,
	RunE:  runEnroll,
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "biolock ", log.LstdFlags|log.LUTC)
	ctx := cmd.Context()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var templateID *int
	if enrollFlags.template > 0 {
		templateID = &enrollFlags.template
	}

	ident, err := st.Identities.Create(ctx, store.NewIdentity{
		Name:        enrollFlags.name,
		TemplateID:  templateID,
		AccessLevel: enrollFlags.accessLevel,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTemplate) {
			return fmt.Errorf("template slot %d is already enrolled", enrollFlags.template)
		}
		return fmt.Errorf("create identity: %w", err)
	}
	fmt.Printf("Created identity %d (%s)\n", ident.ID, ident.Name)

	if templateID != nil {
		sensor := device.DegradeSensor(nil, logger)
		defer sensor.Close()
		if err := sensor.Enroll(ctx, *templateID); err != nil {
			logger.Printf("sensor enroll skipped: %v", err)
		} else {
			fmt.Printf("Enrolled fingerprint in slot %d\n", *templateID)
		}
	}

	if enrollFlags.faces > 0 {
		captured, err := captureFaces(ctx, cfg.EmbeddingsPath, ident.ID, enrollFlags.faces, logger)
		if err != nil {
			return err
		}
		if captured > 0 {
			fmt.Printf("Captured %d reference face sample(s)\n", captured)
			now := time.Now().UTC()
			identID := ident.ID
			if err := st.Events.Record(ctx, types.AccessEvent{
				IdentityID: &identID,
				Method:     types.MethodFaceEnrollment,
				Timestamp:  now,
				Success:    true,
				Message:    fmt.Sprintf("enrolled %d face sample(s)", captured),
			}); err != nil {
				logger.Printf("record enrollment event: %v", err)
			}
		}
	}

	return nil
}

// captureFaces reads up to n frames from the camera, embeds each, and
// appends the embeddings to the reference file. Samples where no face
// is found are retried; a dead camera aborts after a short timeout.
func captureFaces(ctx context.Context, path string, identityID int64, n int, logger *log.Logger) (int, error) {
	camera := device.DegradeCamera(nil, logger)
	defer camera.Close()
	embedder := device.DegradeEmbedder(nil, logger)

	embStore, err := embeddings.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("open embeddings: %w", err)
	}

	captured := 0
	for captured < n {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		frame, err := camera.ReadFrame(readCtx)
		cancel()
		if err != nil {
			logger.Printf("face capture stopped: %v", err)
			break
		}

		emb, ok := embedder.DetectAndEmbed(ctx, frame)
		if !ok {
			continue
		}
		if err := embStore.Add(ctx, identityID, emb); err != nil {
			return captured, fmt.Errorf("store embedding: %w", err)
		}
		captured++
	}
	return captured, nil
}
