package main

import (
	"context"

	"github.com/trezcool/educa/core/course"
)

func (cli *commandLine) addSubject(ns course.NewSubject) error {
	if err := ns.Validate(cli.validate); err != nil {
		return err
	}
	subj, err := cli.crsSvc.CreateSubject(context.Background(), ns)
	if err != nil {
		return err
	}
	cli.printf("subject %q created (id %d)\n", subj.Slug, subj.ID)
	return nil
}
