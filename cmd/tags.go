package main

import (
	"context"
	"fmt"

	"github.com/moodring/backend/internal/formatter"
	"github.com/moodring/backend/internal/models"
	"github.com/moodring/backend/internal/repositories"
	"github.com/moodring/backend/internal/tasks"
	"github.com/moodring/backend/internal/ui"
	"github.com/urfave/cli/v3"
)

// TagsList lists the tags of --user ordered by name.
func (r *Runner) TagsList(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	tags, err := repositories.NewTagRepository(db).List(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if tags == nil {
			tags = []models.Tag{}
		}
		return r.writeJSON(tags, cmd.Bool("pretty"))
	}

	if len(tags) == 0 {
		return r.writePlain("No tags yet. Create one with 'moodring tags create --user %d <name>'\n", id)
	}

	r.writePlain("Found %d tags:\n\n", len(tags))
	for _, t := range tags {
		r.writePlain("%4d  %s\n", t.ID, ui.Swatch(t.Name, t.Color))
	}
	return nil
}

// TagsCreate creates a tag named by the first argument.
func (r *Runner) TagsCreate(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	var color *string
	if c := cmd.String("color"); c != "" {
		color = &c
	}

	tag, err := repositories.NewTagRepository(db).Create(ctx, id, cmd.StringArg("name"), color)
	if err != nil {
		return err
	}
	r.logger.Debug("tag created", "user_id", id, "tag_id", tag.ID)

	if cmd.Bool("json") {
		return r.writeJSON(tag, cmd.Bool("pretty"))
	}
	return r.writePlain("%s Created tag %d %s\n", ui.Styles.OK("✓"), tag.ID, ui.Swatch(tag.Name, tag.Color))
}

// TagsDelete deletes a tag and its track associations.
func (r *Runner) TagsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	tagID, err := tagIDArg(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	if err := repositories.NewTagRepository(db).Delete(ctx, id, tagID); err != nil {
		return err
	}
	return r.writePlain("%s Deleted tag %d\n", ui.Styles.OK("✓"), tagID)
}

// TagsTracks lists the track ids carrying a tag.
func (r *Runner) TagsTracks(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	tagID, err := tagIDArg(cmd)
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	tracks, err := repositories.NewSongTagRepository(db).ListTracksForTag(ctx, id, tagID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlain("Tag %d is on %d tracks:\n", tagID, len(tracks))
	for _, t := range tracks {
		r.writePlain("  %s\n", t)
	}
	return nil
}

// TagsExport writes every tag of --user with its tracks to a file.
func (r *Runner) TagsExport(ctx context.Context, cmd *cli.Command) error {
	id, err := userID(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	db, err := r.store(ctx)
	if err != nil {
		return err
	}

	user, err := repositories.NewUserRepository(db).Get(ctx, id)
	if err != nil {
		return err
	}

	export, err := tasks.ExportTags(ctx, user, repositories.NewTagRepository(db), repositories.NewSongTagRepository(db), cmd.Int("workers"))
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	path, err := formatter.WriteExport(export, format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("tags exported", "user_id", id, "path", path, "tags", len(export.Tags))

	r.writePlain("%s Exported %d tags (%d tracks) to %s\n", ui.Styles.OK("✓"), len(export.Tags), export.TrackCount(), path)
	return nil
}
